package fetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePostLink(t *testing.T) {
	tests := []struct {
		name    string
		link    string
		want    PostRef
		wantErr bool
	}{
		{
			name: "public channel",
			link: "https://t.me/mychannel/120",
			want: PostRef{ChannelID: "mychannel", ItemID: 120},
		},
		{
			name: "query string stripped",
			link: "https://t.me/mychannel/120?single",
			want: PostRef{ChannelID: "mychannel", ItemID: 120},
		},
		{
			name: "private channel",
			link: "https://t.me/c/1234567/89",
			want: PostRef{ChannelID: "c/1234567", ItemID: 89},
		},
		{
			name:    "missing item id",
			link:    "https://t.me/mychannel",
			wantErr: true,
		},
		{
			name:    "non-numeric item id",
			link:    "https://t.me/mychannel/abc",
			wantErr: true,
		},
		{
			name:    "wrong host",
			link:    "https://example.com/mychannel/120",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParsePostLink(tt.link)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDescriptorDownloadable(t *testing.T) {
	assert.False(t, (&Descriptor{}).Downloadable())
	assert.True(t, (&Descriptor{HasMedia: true}).Downloadable())
	assert.True(t, (&Descriptor{HasText: true}).Downloadable())
}
