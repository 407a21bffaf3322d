package models

// Variant selects how a notification is styled
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notification is a transient message ("toast") shown to the user
type Notification struct {
	Variant     Variant `json:"variant"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
}

// IsDestructive reports whether the notification signals a failure
func (n Notification) IsDestructive() bool {
	return n.Variant == VariantDestructive
}
