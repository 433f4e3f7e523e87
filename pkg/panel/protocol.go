/*
AtomTile Core
Copyright (c) 2026 The AtomTile Project Contributors.
SPDX-License-Identifier: GPL-3.0-or-later

This file is part of AtomTile Core.

AtomTile Core is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

AtomTile Core is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with AtomTile Core.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package panel implements the framed poll/reply protocol spoken by the
// AtomMan display panel over its USB serial link.
//
// The panel repeatedly sends a fixed 7-byte poll frame (ENQ) and expects
// a reply carrying one metric tile's payload before its read timeout:
//
//	ENQ   (panel → host): AA 05 <marker> CC 33 C3 3C
//	Reply (host → panel): AA <tile> 00 <seq> {ASCII payload} CC 33 C3 3C
//
// The marker byte means different things depending on the session phase:
// during the unlock handshake it is a boot-mode sequence identity (an
// ASCII digit or '<') that must be echoed back; once the panel has
// activated it echoes the tile id of the last answered tile instead, and
// replies carry a fixed per-tile sequence character. This quirk lives in
// the firmware, not here.
package panel

// Frame layout constants.
const (
	Magic       = 0xAA // first byte of every frame in both directions
	PollControl = 0x05 // second byte of a panel poll frame
	ReplyFiller = 0x00 // third byte of every host reply

	// PollFrameLen is the fixed size of a panel poll frame.
	PollFrameLen = 7
)

// Trailer terminates every frame. There is no length field; the panel
// scans for this sequence to find the frame end, so payloads must never
// contain it.
var Trailer = []byte{0xCC, 0x33, 0xC3, 0x3C}

// Phase identifies which half of the session is driving replies.
// It decides how the poll marker is interpreted and which sequence byte
// a reply carries.
type Phase int

const (
	// PhaseUnlocking means the panel is still in boot-echo mode: replies
	// echo the received marker and only the short unlock rotation is used.
	PhaseUnlocking Phase = iota
	// PhaseSteady means the panel has been activated (or unlock was
	// abandoned) and replies carry fixed per-tile sequence bytes.
	PhaseSteady
)

func (p Phase) String() string {
	switch p {
	case PhaseUnlocking:
		return "unlocking"
	case PhaseSteady:
		return "steady"
	default:
		return "unknown"
	}
}

// IsBootMarker reports whether a poll marker is a boot-mode sequence
// identity: an ASCII digit or '<'. Anything else is an echoed tile id
// from a panel already in normal mode.
func IsBootMarker(b byte) bool {
	return (b >= '0' && b <= '9') || b == '<'
}
