// Copyright (c) 2025 Matt Pollard
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage manages the on-disk collection of saved discussions.
//
// Each discussion lives in its own JSON file named <code>.json under the
// store's base directory, where the code is a ten-character identifier of
// uppercase letters and digits. The store hands out fresh codes, resolves
// codes to paths, lists and searches saved discussions, and deletes them.
// It reads a discussion only as far as the metadata needed for listing;
// full load and save go through the discussion engine itself.
package storage
