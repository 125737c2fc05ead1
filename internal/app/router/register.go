package router

import "github.com/gin-gonic/gin"

// Registrar is implemented by every module's Router.
type Registrar interface{ Register(r *gin.Engine) }

var registrars []Registrar

// Register adds modules to the assembly list.
func Register(rs ...Registrar) { registrars = append(registrars, rs...) }

// Mount wires every registered module's routes onto r.
func Mount(r *gin.Engine) {
	for _, rg := range registrars {
		rg.Register(r)
	}
}
