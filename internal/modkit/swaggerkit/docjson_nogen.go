//go:build !swag

package swaggerkit

// docReader serves an empty document until swag has generated the real one
func docReader() string {
	return `{"swagger":"2.0","info":{"title":"captchahub","version":"0.0.0"},"paths":{}}`
}
