package models

import "github.com/google/uuid"

func ensureID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
