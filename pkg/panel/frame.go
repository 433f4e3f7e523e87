// AtomTile Core
// Copyright (c) 2026 The AtomTile Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of AtomTile Core.
//
// AtomTile Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// AtomTile Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with AtomTile Core.  If not, see <http://www.gnu.org/licenses/>.

package panel

import "io"

// ReadPollFrame reads one poll frame from the port, strictly byte by
// byte. It returns the marker byte and ok=true on a fully valid frame.
//
// Any mismatch, timeout, or short read aborts the parse and returns
// ok=false with no error: garbled frames are expected line noise and the
// caller simply retries on its next loop iteration. No resynchronization
// is attempted beyond the bytes already consumed. A non-nil error is
// returned only for transport-level failures.
func ReadPollFrame(r io.Reader) (byte, bool, error) {
	var buf [1]byte

	b, ok, err := readByte(r, buf[:])
	if err != nil || !ok || b != Magic {
		return 0, false, err
	}

	b, ok, err = readByte(r, buf[:])
	if err != nil || !ok || b != PollControl {
		return 0, false, err
	}

	marker, ok, err := readByte(r, buf[:])
	if err != nil || !ok {
		return 0, false, err
	}

	for _, want := range Trailer {
		b, ok, err = readByte(r, buf[:])
		if err != nil || !ok || b != want {
			return 0, false, err
		}
	}

	return marker, true, nil
}

// readByte reads exactly one byte. ok=false means the read timed out or
// returned nothing, which the framing layer treats the same as a
// mismatch.
func readByte(r io.Reader, buf []byte) (byte, bool, error) {
	n, err := r.Read(buf[:1])
	if err != nil {
		return 0, false, err
	}
	if n == 0 {
		return 0, false, nil
	}
	return buf[0], true, nil
}

// BuildReplyFrame serializes a host reply. The payload is encoded as
// single-byte characters; runes above 0xFF are dropped, matching the
// panel firmware's Latin-1-only decoder. Callers are responsible for
// payloads never containing the trailer sequence - the protocol has no
// escaping.
func BuildReplyFrame(tile TileID, seq byte, payload string) []byte {
	frame := make([]byte, 0, 4+len(payload)+len(Trailer))
	frame = append(frame, Magic, byte(tile), ReplyFiller, seq)
	for _, r := range payload {
		if r <= 0xFF {
			frame = append(frame, byte(r))
		}
	}
	return append(frame, Trailer...)
}
