package tap

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

// SettingInfo describes one config key.
type SettingInfo struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Secret      bool   `json:"secret"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Info is the --about payload.
type Info struct {
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Version      string         `json:"version"`
	Capabilities []string       `json:"capabilities"`
	Settings     []SettingInfo  `json:"-"`
	ConfigSchema map[string]any `json:"settings"`
}

var settings = []SettingInfo{
	{Name: "api_key", Type: "string", Required: true, Secret: true, Title: "API Key",
		Description: "The API key to authenticate against the Talos API"},
	{Name: "api_secret", Type: "string", Required: true, Secret: true, Title: "API Secret",
		Description: "The API secret to sign Talos requests"},
	{Name: "api_host", Type: "string", Required: true, Title: "API Host",
		Description: "The Talos API hostname (e.g., tal-295.sandbox.talostrading.com)"},
	{Name: "request_timeout", Type: "integer", Title: "Request Timeout",
		Description: "HTTP timeout in seconds; 0 disables the timeout"},
	{Name: "sqlite_path", Type: "string", Title: "SQLite Path",
		Description: "Mirror synced balances into this SQLite database"},
}

// About returns the tap metadata and its config JSON schema.
func About() Info {
	props := make(map[string]any, len(settings))
	var required []string
	for _, s := range settings {
		prop := map[string]any{
			"type":        s.Type,
			"title":       s.Title,
			"description": s.Description,
		}
		if s.Secret {
			prop["secret"] = true
			prop["writeOnly"] = true
		}
		props[s.Name] = prop
		if s.Required {
			required = append(required, s.Name)
		}
	}

	return Info{
		Name:         Name,
		Description:  "Singer tap for the Talos trading API",
		Version:      Version,
		Capabilities: []string{"catalog", "discover", "state", "about"},
		Settings:     settings,
		ConfigSchema: map[string]any{
			"type":       "object",
			"properties": props,
			"required":   required,
		},
	}
}

// WriteAbout renders About as "json" (default) or "markdown".
func WriteAbout(w io.Writer, format string) error {
	info := About()
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	case "markdown":
		_, err := io.WriteString(w, renderMarkdown(info))
		return err
	default:
		return fmt.Errorf("unknown about format %q", format)
	}
}

func renderMarkdown(info Info) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# `%s`\n\n%s\n\nVersion: %s\n\n", info.Name, info.Description, info.Version)

	b.WriteString("## Capabilities\n\n")
	for _, c := range info.Capabilities {
		fmt.Fprintf(&b, "* `%s`\n", c)
	}

	b.WriteString("\n## Settings\n\n")
	b.WriteString("| Setting | Required | Secret | Description |\n")
	b.WriteString("|:--------|:--------:|:------:|:------------|\n")
	for _, s := range info.Settings {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", s.Name, yesNo(s.Required), yesNo(s.Secret), s.Description)
	}
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "True"
	}
	return "False"
}
