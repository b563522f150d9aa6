// Package appfs embeds the files shipped with the binaries: SQL migrations and templates.
package appfs

import "embed"

//go:embed migrations/*.sql assets/templates/email/* assets/templates/certificate/*
var FS embed.FS
