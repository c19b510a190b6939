package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/template"
)

// Placeholder values emitted when a client setting is not configured.
const (
	PlaceholderSupabaseURL    = "https://your-project.supabase.co"
	PlaceholderSupabaseKey    = "your-anon-key"
	PlaceholderGoogleClientID = "your-google-client-id"
)

// ClientConfig is the set of values exposed to the browser as window.ENV.
//
// Everything here is public: SupabaseKey must be the anon key, never a
// service role key, since the generated script is served to every visitor.
type ClientConfig struct {
	SupabaseURL    string
	SupabaseKey    string
	GoogleClientID string
}

// ClientConfigFromEnv reads SUPABASE_URL, SUPABASE_KEY and GOOGLE_CLIENT_ID,
// substituting placeholders for unset variables.
func ClientConfigFromEnv() ClientConfig {
	return ClientConfig{
		SupabaseURL:    getEnv("SUPABASE_URL", PlaceholderSupabaseURL),
		SupabaseKey:    getEnv("SUPABASE_KEY", PlaceholderSupabaseKey),
		GoogleClientID: getEnv("GOOGLE_CLIENT_ID", PlaceholderGoogleClientID),
	}
}

// ClientConfig returns the browser-facing subset of a loaded configuration.
func (c *Config) ClientConfig() ClientConfig {
	cc := ClientConfig{
		SupabaseURL:    c.Supabase.URL,
		SupabaseKey:    c.Supabase.Key,
		GoogleClientID: c.OAuth.ClientID,
	}
	if cc.SupabaseURL == "" {
		cc.SupabaseURL = PlaceholderSupabaseURL
	}
	if cc.SupabaseKey == "" {
		cc.SupabaseKey = PlaceholderSupabaseKey
	}
	if cc.GoogleClientID == "" {
		cc.GoogleClientID = PlaceholderGoogleClientID
	}
	return cc
}

// Status reports which values differ from their placeholders.
func (cc ClientConfig) Status() map[string]bool {
	return map[string]bool{
		"SUPABASE_URL":     cc.SupabaseURL != PlaceholderSupabaseURL,
		"SUPABASE_KEY":     cc.SupabaseKey != PlaceholderSupabaseKey,
		"GOOGLE_CLIENT_ID": cc.GoogleClientID != PlaceholderGoogleClientID,
	}
}

var clientScript = template.Must(template.New("config.js").Funcs(template.FuncMap{
	"js": jsString,
}).Parse(`// Auto-generated configuration file
// This file is created during build time and should not be edited manually

window.ENV = {
    SUPABASE_URL: {{js .SupabaseURL}},
    SUPABASE_KEY: {{js .SupabaseKey}},
    GOOGLE_CLIENT_ID: {{js .GoogleClientID}}
};
`))

// WriteClientScript renders the window.ENV script to w.
func WriteClientScript(w io.Writer, cc ClientConfig) error {
	if err := clientScript.Execute(w, cc); err != nil {
		return fmt.Errorf("failed to render client config: %w", err)
	}
	return nil
}

// WriteClientScriptFile renders the script into path, creating its directory
// and replacing any existing file.
func WriteClientScriptFile(path string, cc ClientConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := WriteClientScript(f, cc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// jsString quotes s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
