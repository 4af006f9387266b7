// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strconv"
	"time"
)

// HistoryRecord is one message of a server-side transcript, in server order.
type HistoryRecord struct {
	ServerID  string
	Role      string
	Text      string
	CreatedAt time.Time
}

// ToMessage converts the record into a confirmed local message.
func (r HistoryRecord) ToMessage() Message {
	return Message{
		ID:        NextID(),
		Sender:    SenderFromRole(r.Role),
		Text:      r.Text,
		CreatedAt: r.CreatedAt,
		Status:    StatusConfirmed,
		ServerID:  r.ServerID,
	}
}

// FormatServerID renders a numeric server id in the form used by the
// binding store.
func FormatServerID(id int64) string {
	return strconv.FormatInt(id, 10)
}
