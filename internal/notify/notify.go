// Copyright © 2025 Kaleido, Inc.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package notify is the transaction-status notification stream consumed
// by a presentation layer. Notifications are fire-and-forget progress
// signals, never authoritative state - at most one is visible at a time,
// and each auto-expires after a fixed display duration unless superseded
// first.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hyperledger/firefly-common/pkg/log"
	"github.com/investdao/privpool/internal/confutil"
)

type Kind string

const (
	Pending Kind = "pending"
	Success Kind = "success"
	Error   Kind = "error"
)

type Notification struct {
	Sequence uint64    `json:"sequence"`
	Kind     Kind      `json:"kind"`
	Message  string    `json:"message"`
	Time     time.Time `json:"time"`
}

type Config struct {
	DisplayDuration *string `json:"displayDuration"`
	StreamBuffer    *int    `json:"streamBuffer"`
}

var Defaults = &Config{
	DisplayDuration: confutil.P("3s"),
	StreamBuffer:    confutil.P(16),
}

// Notifier tracks the single currently visible notification. A new
// notification replaces the prior one immediately and cancels its expiry
// timer. Consumers either poll Current or receive from C - the stream is
// non-blocking and drops on a slow consumer rather than stalling an
// operation.
type Notifier struct {
	displayFor time.Duration
	stream     chan *Notification

	lock    sync.Mutex
	seq     uint64
	current *Notification
	timer   *time.Timer
	closed  bool
}

func NewNotifier(ctx context.Context, conf *Config) *Notifier {
	return &Notifier{
		displayFor: confutil.DurationMin(conf.DisplayDuration, 1*time.Millisecond, confutil.Duration(Defaults.DisplayDuration, 3*time.Second)),
		stream:     make(chan *Notification, confutil.IntMin(conf.StreamBuffer, 1, *Defaults.StreamBuffer)),
	}
}

func (n *Notifier) Notify(ctx context.Context, kind Kind, format string, args ...any) {
	n.lock.Lock()
	defer n.lock.Unlock()
	if n.closed {
		return
	}
	if n.timer != nil {
		n.timer.Stop()
	}
	n.seq++
	notification := &Notification{
		Sequence: n.seq,
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Time:     time.Now(),
	}
	n.current = notification
	log.L(ctx).Debugf("notification %d [%s]: %s", notification.Sequence, kind, notification.Message)
	n.timer = time.AfterFunc(n.displayFor, func() {
		n.expire(notification.Sequence)
	})
	select {
	case n.stream <- notification:
	default:
		log.L(ctx).Debugf("notification stream full, dropped %d", notification.Sequence)
	}
}

// expire clears the visible notification, unless a newer one has already
// replaced it
func (n *Notifier) expire(seq uint64) {
	n.lock.Lock()
	defer n.lock.Unlock()
	if n.current != nil && n.current.Sequence == seq {
		n.current = nil
	}
}

// Current returns the visible notification, or nil if none (or expired)
func (n *Notifier) Current() *Notification {
	n.lock.Lock()
	defer n.lock.Unlock()
	return n.current
}

func (n *Notifier) C() <-chan *Notification {
	return n.stream
}

func (n *Notifier) Close() {
	n.lock.Lock()
	defer n.lock.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	if n.timer != nil {
		n.timer.Stop()
	}
	n.current = nil
	close(n.stream)
}
