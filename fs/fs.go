// Package appfs embeds the files the binaries ship with: SQL migrations, email templates and assets.
package appfs

import "embed"

// CommonPasswordsFile lists lowercase passwords that are refused at signup, one per line.
const CommonPasswordsFile = "assets/common-passwords.txt"

//go:embed migrations/*.sql templates/email/* assets/*
var FS embed.FS
