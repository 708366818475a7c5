// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package tcprtu

import "sync/atomic"

// Sequence hands out transaction ids for one connection. The first id is 1
// and the counter wraps from 0xFFFF to 0.
type Sequence struct {
	last uint32
}

// Next returns the next transaction id.
func (s *Sequence) Next() uint16 {
	return uint16(atomic.AddUint32(&s.last, 1))
}
