package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zelosify/zelosify/server/internal/apperr"
	"github.com/zelosify/zelosify/server/internal/models"
	"github.com/zelosify/zelosify/server/internal/openings/service"
	"github.com/zelosify/zelosify/server/pkg/middleware"
)

type profilesRequest struct {
	Profiles []service.ProfileRef `json:"profiles"`
}

func (r profilesRequest) keys() []string {
	out := make([]string, 0, len(r.Profiles))
	for _, p := range r.Profiles {
		out = append(out, p.ObjectKey)
	}
	return out
}

// RegisterVendorRoutes mounts the vendor endpoints under /api/v1/vendor. auth
// must attach a principal; role checks are applied here.
func RegisterVendorRoutes(r gin.IRouter, svc *service.Service, auth gin.HandlerFunc) {
	g := r.Group("/api/v1/vendor", auth)

	g.GET("/requests", middleware.RequireRole(models.RoleVendorManager), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success", "data": []any{}})
	})

	v := g.Group("/openings", middleware.RequireRole(models.RoleITVendor))

	v.GET("", func(c *gin.Context) {
		list, err := svc.List(c.Request.Context(), principal(c))
		if err != nil {
			apperr.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"openings": list, "totalItems": len(list)})
	})

	v.GET("/:id", func(c *gin.Context) {
		d, err := svc.Get(c.Request.Context(), principal(c), c.Param("id"))
		if err != nil {
			apperr.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, d)
	})

	v.POST("/:id/profiles/presign", func(c *gin.Context) {
		var req struct {
			Filename string `json:"filename"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			apperr.Abort(c, apperr.Input(apperr.ReasonMissingInput, "filename is required"))
			return
		}
		up, err := svc.PresignUpload(c.Request.Context(), principal(c), c.Param("id"), req.Filename)
		if err != nil {
			apperr.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Upload token generated successfully", "data": up})
	})

	v.POST("/:id/profiles/upload", func(c *gin.Context) {
		var req profilesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperr.Abort(c, apperr.Input(apperr.ReasonMissingInput, "profiles are required"))
			return
		}
		if err := svc.SubmitProfiles(c.Request.Context(), principal(c), c.Param("id"), req.keys()); err != nil {
			apperr.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Profiles submitted successfully"})
	})

	v.POST("/:id/profiles/uploadasdraft", func(c *gin.Context) {
		var req profilesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperr.Abort(c, apperr.Input(apperr.ReasonMissingInput, "profiles are required"))
			return
		}
		if err := svc.DraftProfiles(c.Request.Context(), principal(c), c.Param("id"), req.keys()); err != nil {
			apperr.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Profiles uploaded successfully"})
	})

	v.POST("/:id/profiles/view", func(c *gin.Context) {
		var req profilesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			apperr.Abort(c, apperr.Input(apperr.ReasonMissingInput, "profiles are required"))
			return
		}
		views, err := svc.ViewProfiles(c.Request.Context(), principal(c), c.Param("id"), req.Profiles)
		if err != nil {
			apperr.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Presigned view URLs generated", "data": gin.H{"profiles": views}})
	})

	v.POST("/:id/profiles/delete/:profileId", func(c *gin.Context) {
		if err := svc.DeleteProfile(c.Request.Context(), principal(c), c.Param("id"), c.Param("profileId")); err != nil {
			apperr.Abort(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Profile deleted successfully"})
	})
}

func principal(c *gin.Context) *models.Principal {
	p, _ := middleware.Principal(c)
	return p
}
