// Copyright (c) 2025 The Mesh developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package settlement

import "sync"

// Outbox buffers the messages of the running transaction.
// The executor drains it after commit and discards it on revert.
type Outbox struct {
	lock     sync.Mutex
	messages []*Message
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) add(msg *Message) {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.messages = append(o.messages, msg)
}

// Len returns the number of buffered messages.
func (o *Outbox) Len() int {
	o.lock.Lock()
	defer o.lock.Unlock()
	return len(o.messages)
}

// Drain returns and clears the buffered messages.
func (o *Outbox) Drain() []*Message {
	o.lock.Lock()
	defer o.lock.Unlock()
	msgs := o.messages
	o.messages = nil
	return msgs
}

// Discard drops the buffered messages.
func (o *Outbox) Discard() {
	o.lock.Lock()
	defer o.lock.Unlock()
	o.messages = nil
}
