// Copyright (c) 2025 Matt Pollard
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package discussion implements the conversation engine.
//
// An Engine owns two transcripts of the same conversation: the complete
// transcript records every turn ever exchanged, while the working transcript
// is what actually goes to the model and is kept under a token budget. When
// an exchange pushes the working transcript over budget, the engine asks the
// model to summarize it and swaps in a two-turn distilled transcript
// (instruction + summary). The complete transcript is never compacted.
//
// Engines round-trip through a JSON document, one file per discussion
// (see Dump and Load for the schema).
package discussion
