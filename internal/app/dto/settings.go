package dto

// CoreSettings are the application level settings.
type CoreSettings struct {
	Autostart    *bool             `json:"autostart"`
	ShortcutKeys map[string]string `json:"shortcut_keys"`
}
