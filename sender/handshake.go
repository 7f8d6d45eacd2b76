package sender

import (
	"net"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/prism-video/protocol"
	"github.com/opd-ai/prism-video/transport"
)

// handshakePollInterval bounds how often the blocking handshake wait
// re-checks the socket; the handshake happens once per session, so a
// coarser interval than the main loop's poll is fine.
const handshakePollInterval = 5 * time.Millisecond

// Handshake implements spec §4.6's sender side: block until the first
// valid CONFIG record arrives (it carries only the target bitrate),
// connect the endpoint to that peer, and reply with a CONFIG record
// carrying this session's width/height/fps and the echoed bitrate.
//
// Malformed or non-CONFIG records seen while waiting are ignored, not
// treated as errors.
func Handshake(conn *transport.Endpoint, width, height, fps uint16) (targetBitrateKbps uint32, err error) {
	buf := make([]byte, protocol.DefaultMTU)

	logrus.WithFields(logrus.Fields{
		"function": "Handshake",
		"local":    conn.LocalAddr().String(),
	}).Info("waiting for receiver")

	var peerAddr net.Addr
	for {
		n, addr, recvErr := conn.Recv(buf)
		if recvErr != nil {
			time.Sleep(handshakePollInterval)
			continue
		}

		rec, parseErr := protocol.Parse(buf[:n])
		if parseErr != nil || rec.Config == nil {
			continue
		}

		targetBitrateKbps = rec.Config.TargetBitrate
		peerAddr = addr
		break
	}

	conn.Connect(peerAddr)

	logrus.WithFields(logrus.Fields{
		"function": "Handshake",
		"peer":     peerAddr.String(),
		"bitrate":  targetBitrateKbps,
	}).Info("received config, replying")

	reply := &protocol.Config{Width: width, Height: height, FPS: fps, TargetBitrate: targetBitrateKbps}
	if err := conn.Send(reply.Serialize()); err != nil {
		return 0, err
	}

	return targetBitrateKbps, nil
}
