package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// parseRollURI extracts the guild ID and roll number from a URI of the
// form roll://{guild_id}/{roll_id}. It requires an actual guild ID and a
// positive integer roll number.
func parseRollURI(uri string) (string, int64, error) {
	prefix := "roll://"

	if !strings.HasPrefix(uri, prefix) {
		return "", 0, fmt.Errorf("URI must start with %q", prefix)
	}

	rest := strings.TrimPrefix(uri, prefix)
	parts := strings.Split(rest, "/")
	if len(parts) != 2 {
		return "", 0, fmt.Errorf("URI must have the form roll://{guild_id}/{roll_id}")
	}

	guildID := strings.TrimSpace(parts[0])
	if guildID == "" {
		return "", 0, fmt.Errorf("guild ID is required in URI")
	}
	if guildID == "_" {
		return "", 0, fmt.Errorf("guild ID placeholder '_' is not a valid guild ID")
	}

	rollID, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("roll ID must be an integer: %w", err)
	}
	if rollID <= 0 {
		return "", 0, fmt.Errorf("roll ID must be positive")
	}

	return guildID, rollID, nil
}

// parseGuildIDFromRollsURI extracts the guild ID from a URI of the form
// roll://{guild_id}/rolls. It requires an actual guild ID.
func parseGuildIDFromRollsURI(uri string) (string, error) {
	prefix := "roll://"
	suffix := "/rolls"

	if !strings.HasPrefix(uri, prefix) {
		return "", fmt.Errorf("URI must start with %q", prefix)
	}
	if !strings.HasSuffix(uri, suffix) {
		return "", fmt.Errorf("URI must end with %q", suffix)
	}

	guildID := strings.TrimPrefix(uri, prefix)
	guildID = strings.TrimSuffix(guildID, suffix)
	guildID = strings.TrimSpace(guildID)

	if guildID == "" {
		return "", fmt.Errorf("guild ID is required in URI")
	}
	if guildID == "_" {
		return "", fmt.Errorf("guild ID placeholder '_' is not a valid guild ID")
	}

	return guildID, nil
}
