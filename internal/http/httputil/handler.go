package httputil

import "github.com/gin-gonic/gin"

// IHttpHandler mounts a resource under Root() on the public, signed and
// signed admin groups.
type IHttpHandler interface {
	Root() string
	SetRoutes(pub *gin.RouterGroup, signed *gin.RouterGroup, admin *gin.RouterGroup)
}
