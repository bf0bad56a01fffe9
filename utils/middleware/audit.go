package middleware

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/scholarproof/api/model"
)

// AdminAuditLog records an audit trail entry for admin mutations. The old
// value is captured before the handler runs whenever the route addresses
// an existing resource by ID; the new value is the request body.
func AdminAuditLog(db *gorm.DB, action, resource string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		adminID, ok := GuardUserID(c)
		if !ok {
			return c.Next() // Continue without logging if user not found
		}

		// Parse resource ID from params if available
		var resourceID uint
		if id := c.Params("id"); id != "" {
			if parsedID, err := strconv.ParseUint(id, 10, 32); err == nil {
				resourceID = uint(parsedID)
			}
		}

		var oldValue, newValue []byte

		if c.Method() == "POST" || c.Method() == "PUT" || c.Method() == "PATCH" {
			body := c.Body()
			if len(body) > 0 && json.Valid(body) {
				newValue = append([]byte(nil), body...)
			}
		}

		// Capture the existing state for any mutation addressed at an
		// existing resource. POST covers the lifecycle actions
		// (revoke/restore/archive/regenerate) that mutate by ID.
		if resourceID > 0 {
			switch resource {
			case "sessions":
				var session model.Session
				if err := db.First(&session, resourceID).Error; err == nil {
					oldValue, _ = json.Marshal(session)
				}
			case "certificates":
				var cert model.Certificate
				if err := db.First(&cert, resourceID).Error; err == nil {
					oldValue, _ = json.Marshal(cert)
				}
			case "invite_codes":
				var code model.InviteCode
				if err := db.First(&code, resourceID).Error; err == nil {
					oldValue, _ = json.Marshal(code)
				}
			}
		}

		// Execute the actual handler
		err := c.Next()

		entry := model.AdminAuditLog{
			AdminID:     adminID,
			Action:      action,
			Resource:    resource,
			ResourceID:  resourceID,
			OldValue:    datatypes.JSON(oldValue),
			NewValue:    datatypes.JSON(newValue),
			IPAddress:   c.IP(),
			UserAgent:   c.Get("User-Agent"),
			Description: c.Method() + " " + c.Path(),
		}

		db.Create(&entry)

		return err
	}
}
