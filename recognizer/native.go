package recognizer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"nhooyr.io/websocket"

	"voxdo/encoder"
)

// NativeRecognizer streams PCM to a websocket recognizer that answers
// with interim and final transcript frames. It is the fallback path when
// batch transcription is not available.
type NativeRecognizer struct {
	wsURL string
	lang  string
}

func NewNativeRecognizer(wsURL string) *NativeRecognizer {
	return &NativeRecognizer{wsURL: wsURL}
}

func (n *NativeRecognizer) Name() string { return "native" }
func (n *NativeRecognizer) Mode() Mode   { return ModeNativeRecognition }

func (n *NativeRecognizer) Probe(ctx context.Context) error {
	if n.wsURL == "" {
		return fmt.Errorf("%w: no recognizer endpoint configured", ErrUnavailable)
	}
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(probeCtx, n.endpoint(), nil)
	if err != nil {
		return fmt.Errorf("%w: recognizer unreachable: %v", ErrUnavailable, err)
	}
	conn.Close(websocket.StatusNormalClosure, "probe")
	return nil
}

func (n *NativeRecognizer) endpoint() string {
	endpoint, err := url.Parse(n.wsURL)
	if err != nil {
		return n.wsURL
	}
	q := endpoint.Query()
	q.Set("encoding", "linear16")
	q.Set("sample_rate", fmt.Sprintf("%d", encoder.SampleRate))
	q.Set("channels", fmt.Sprintf("%d", encoder.Channels))
	if n.lang != "" {
		q.Set("language", n.lang)
	}
	endpoint.RawQuery = q.Encode()
	return endpoint.String()
}

func (n *NativeRecognizer) NewSession(ctx context.Context, cfg SessionConfig) (Session, error) {
	if cfg.Language != "" {
		n.lang = cfg.Language
	}
	return newStreamSession(func() (rawStreamConn, error) {
		return n.dial(ctx)
	}), nil
}

type recognizerFrame struct {
	Transcript string `json:"transcript"`
	IsFinal    bool   `json:"is_final"`
}

type wsStreamConn struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

func (n *NativeRecognizer) dial(ctx context.Context) (rawStreamConn, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	conn, _, err := websocket.Dial(streamCtx, n.endpoint(), nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", ErrRecognition, err)
	}
	return &wsStreamConn{conn: conn, ctx: streamCtx, cancel: cancel}, nil
}

func (c *wsStreamConn) Send(pcm []byte) error {
	return c.conn.Write(c.ctx, websocket.MessageBinary, pcm)
}

func (c *wsStreamConn) CloseSend() error {
	return c.conn.Write(c.ctx, websocket.MessageText, []byte(`{"type":"finalize"}`))
}

func (c *wsStreamConn) Recv() (streamUpdate, error) {
	_, data, err := c.conn.Read(c.ctx)
	if err != nil {
		return streamUpdate{}, err
	}
	var frame recognizerFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return streamUpdate{}, err
	}
	return streamUpdate{
		Transcript: strings.TrimSpace(frame.Transcript),
		IsFinal:    frame.IsFinal,
	}, nil
}

func (c *wsStreamConn) Close() error {
	c.cancel()
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
