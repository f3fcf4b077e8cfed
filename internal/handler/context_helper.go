package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/uni-enrollment-api/internal/middleware"
	"github.com/noah-isme/uni-enrollment-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	claims, ok := middleware.Claims(c)
	if !ok {
		return nil
	}
	return claims
}

// actingStudent returns the caller's student id when the caller is a student.
func actingStudent(c *gin.Context) (string, bool) {
	claims := claimsFromContext(c)
	if claims == nil || claims.Role != models.RoleStudent {
		return "", false
	}
	return claims.SubjectID, true
}

func queryInt(c *gin.Context, key string, fallback int) int {
	if value, err := strconv.Atoi(c.Query(key)); err == nil {
		return value
	}
	return fallback
}
