package middleware

import "github.com/gin-gonic/gin"

// ProfileHeader carries the playback profile whose preferences a request
// reads and writes
const ProfileHeader = "X-Playkit-Profile"

// ProfileContextKey is the gin context key holding the resolved profile
const ProfileContextKey = "playback_profile"

// Profile resolves the playback profile for a request, falling back to the
// configured default when the header is absent
func Profile(defaultProfile string) gin.HandlerFunc {
	return func(c *gin.Context) {
		profile := c.GetHeader(ProfileHeader)
		if profile == "" {
			profile = defaultProfile
		}
		c.Set(ProfileContextKey, profile)
		c.Next()
	}
}

// GetProfile returns the resolved playback profile for a request
func GetProfile(c *gin.Context) string {
	if profile, ok := c.Get(ProfileContextKey); ok {
		if s, ok := profile.(string); ok {
			return s
		}
	}
	return ""
}
