package inbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMessageEncodeDecodeRoundTrip(t *testing.T) {
	msg := Message{
		Header: Header{
			From:      "aleph-aaaaaaaa",
			To:        "aleph-bbbbbbbb",
			Summary:   "hello there",
			Priority:  Normal,
			Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			MessageID: "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		},
		Body: "full body text\nwith multiple lines\n",
	}

	raw, err := msg.Encode()
	require.NoError(t, err)

	got, err := Decode("msg.md", raw)
	require.NoError(t, err)
	require.Equal(t, msg.Header, got.Header)
	require.Equal(t, msg.Body, got.Body)

	raw2, err := got.Encode()
	require.NoError(t, err)
	require.Equal(t, raw, raw2)
}

func TestDecodeRejectsMissingDelimiters(t *testing.T) {
	_, err := Decode("msg.md", []byte("not a frontmatter file at all"))
	require.Error(t, err)
	var bad *ErrBadFrontmatter
	require.ErrorAs(t, err, &bad)
}

func TestDecodeRejectsBothToAndChannel(t *testing.T) {
	raw := "---\n" +
		"from: aleph-aaaaaaaa\n" +
		"to: aleph-bbbbbbbb\n" +
		"channel: general\n" +
		"summary: x\n" +
		"priority: normal\n" +
		"timestamp: 2026-01-02T03:04:05Z\n" +
		"message_id: 01ARZ3NDEKTSV4RRFFQ69G5FAV\n" +
		"---\n" +
		"body\n"
	_, err := Decode("msg.md", []byte(raw))
	require.Error(t, err)
}

func TestDecodeRejectsNeitherToNorChannel(t *testing.T) {
	raw := "---\n" +
		"from: aleph-aaaaaaaa\n" +
		"summary: x\n" +
		"priority: normal\n" +
		"timestamp: 2026-01-02T03:04:05Z\n" +
		"message_id: 01ARZ3NDEKTSV4RRFFQ69G5FAV\n" +
		"---\n" +
		"body\n"
	_, err := Decode("msg.md", []byte(raw))
	require.Error(t, err)
}
