package fetch

import (
	"fmt"
	"strconv"
	"strings"
)

// PostRef points to one post inside a channel
type PostRef struct {
	ChannelID string `json:"channel_id"`
	ItemID    int64  `json:"item_id"`
}

// ParsePostLink resolves a post URL of the form
// https://t.me/<channel>/<id> or https://t.me/c/<internal>/<id> into a
// PostRef. Query strings are ignored.
func ParsePostLink(link string) (PostRef, error) {
	raw := link
	if i := strings.Index(raw, "?"); i >= 0 {
		raw = raw[:i]
	}
	raw = strings.TrimSuffix(raw, "/")

	const prefix = "https://t.me/"
	if !strings.HasPrefix(raw, prefix) {
		return PostRef{}, fmt.Errorf("invalid post link %q: must start with %s", link, prefix)
	}

	parts := strings.Split(strings.TrimPrefix(raw, prefix), "/")
	switch len(parts) {
	case 2:
		// t.me/<channel>/<id>
		id, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil || parts[0] == "" {
			return PostRef{}, fmt.Errorf("invalid post link %q", link)
		}
		return PostRef{ChannelID: parts[0], ItemID: id}, nil
	case 3:
		// t.me/c/<internal>/<id> for private channels
		if parts[0] != "c" || parts[1] == "" {
			return PostRef{}, fmt.Errorf("invalid post link %q", link)
		}
		id, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return PostRef{}, fmt.Errorf("invalid post link %q", link)
		}
		return PostRef{ChannelID: "c/" + parts[1], ItemID: id}, nil
	default:
		return PostRef{}, fmt.Errorf("invalid post link %q", link)
	}
}
