// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export renders saved conversations as Markdown, JSON or HTML
// documents.
//
// # Usage
//
//	exporter, err := export.ForFormat("markdown", export.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	path, err := export.ExportToFile(conv, exporter, opts)
//
// Markdown exports carry a YAML front matter block when IncludeMetadata is
// set. JSON exports keep the stored role/text message shape.
package export
