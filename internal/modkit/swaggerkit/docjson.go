//go:build swag

package swaggerkit

import docs "captchahub/internal/services/api/docs"

func docReader() string { return docs.SwaggerInfo.ReadDoc() }
