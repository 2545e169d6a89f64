// Package record defines the persisted record value type and the field-level
// helpers built on it (required-field validation, case-insensitive matching,
// size estimation).
package record

import "strings"

// StatusInitialize is the lifecycle status the store assigns at write time.
// The log is append-only; the store never updates a record in place, so any
// downstream status transition must be appended as a new record or handled
// by a higher layer.
const StatusInitialize = "Initialize"

// Record is one contact/notification entry. All fields are text.
//
// UniqueID and Status are system-assigned at write time; caller-supplied
// values for those two fields are always overwritten.
type Record struct {
	ID               string `json:"id" msgpack:"id"`
	Name             string `json:"name" msgpack:"name"`
	Phone            string `json:"phone" msgpack:"phone"`
	Email            string `json:"email" msgpack:"email"`
	State            string `json:"state" msgpack:"state"`
	NotificationType string `json:"notificationType" msgpack:"notificationType"`
	UniqueID         string `json:"uniqueId" msgpack:"uniqueId"`
	Status           string `json:"status" msgpack:"status"`
}

// requiredFields are the caller-supplied fields a record must carry to be
// accepted into a batch. UniqueID and Status are excluded: the store owns them.
var requiredFields = []string{"id", "name", "phone", "email", "state", "notificationType"}

// Missing returns the names of required fields that are empty, in the
// canonical field order. A record with no missing fields is valid for append.
func (r Record) Missing() []string {
	var missing []string
	for _, name := range requiredFields {
		if v, _ := r.field(name); v == "" {
			missing = append(missing, name)
		}
	}
	return missing
}

// field returns the value of the named field and whether the name is
// recognized. Field names are matched case-insensitively.
func (r Record) field(name string) (string, bool) {
	switch strings.ToLower(name) {
	case "id":
		return r.ID, true
	case "name":
		return r.Name, true
	case "phone":
		return r.Phone, true
	case "email":
		return r.Email, true
	case "state":
		return r.State, true
	case "notificationtype":
		return r.NotificationType, true
	case "uniqueid":
		return r.UniqueID, true
	case "status":
		return r.Status, true
	}
	return "", false
}

// MatchField reports whether the named field case-insensitively equals want.
// The second return value is false when the field name is not recognized;
// callers typically ignore unrecognized criteria rather than reject them.
func (r Record) MatchField(name, want string) (matched, known bool) {
	value, ok := r.field(name)
	if !ok {
		return false, false
	}
	return strings.EqualFold(value, want), true
}

// EstimatedSize is the sum of the character lengths of all eight fields.
// It is the statistics heuristic, not an on-disk footprint.
func (r Record) EstimatedSize() int {
	return len(r.ID) + len(r.Name) + len(r.Phone) + len(r.Email) +
		len(r.State) + len(r.NotificationType) + len(r.UniqueID) + len(r.Status)
}
