// Package config holds the console configuration file format.
package config

// Static is the parsed form of the rustmailerctl.conf configuration file.
type Static struct {
	BaseURL          string            `sconf-doc:"NOTE: This config file is in 'sconf' format. Indent with tabs. Comments must be on their own line, they don't end a line. Do not escape or quote strings. Details: https://pkg.go.dev/github.com/mjl-/sconf.\n\n\nOrigin of the RustMailer backend, e.g. https://mail.example.com. API paths are resolved under it. In development mode the local development origin is used instead."`
	DataDir          string            `sconf-doc:"Directory where console state is stored: the credential slot, UI preferences and the last known release. If this is a relative path, it is relative to the directory of rustmailerctl.conf."`
	LogLevel         string            `sconf-doc:"Default log level, one of: error, warn, info, debug, trace."`
	PackageLogLevels map[string]string `sconf:"optional" sconf-doc:"Overrides of log level per package (e.g. client, state, querycache)."`
	Development      bool              `sconf:"optional" sconf-doc:"Development mode: requests go to the local development origin, failed queries are not retried and cached queries are not refetched on focus."`
}
