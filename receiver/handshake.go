package receiver

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/opd-ai/prism-video/protocol"
	"github.com/opd-ai/prism-video/transport"
)

const handshakePollInterval = 5 * time.Millisecond

// Handshake implements spec §4.6's receiver side: connect to the sender,
// send a CONFIG record carrying only the target bitrate, and block until a
// matching CONFIG reply arrives carrying the sender's actual resolution and
// fps.
func Handshake(conn *transport.Endpoint, senderAddr string, targetBitrateKbps uint32) (*protocol.Config, error) {
	remoteEP, err := resolveUDPAddr(senderAddr)
	if err != nil {
		return nil, err
	}
	conn.Connect(remoteEP)

	request := &protocol.Config{TargetBitrate: targetBitrateKbps}

	logrus.WithFields(logrus.Fields{
		"function": "Handshake",
		"sender":   senderAddr,
		"bitrate":  targetBitrateKbps,
	}).Info("requesting session config")

	buf := make([]byte, protocol.DefaultMTU)
	for {
		if err := conn.Send(request.Serialize()); err != nil {
			time.Sleep(handshakePollInterval)
			continue
		}

		n, _, recvErr := conn.Recv(buf)
		if recvErr != nil {
			time.Sleep(handshakePollInterval)
			continue
		}

		rec, parseErr := protocol.Parse(buf[:n])
		if parseErr != nil || rec.Config == nil {
			continue
		}

		logrus.WithFields(logrus.Fields{
			"function": "Handshake",
			"width":    rec.Config.Width,
			"height":   rec.Config.Height,
			"fps":      rec.Config.FPS,
		}).Info("received session config")

		return rec.Config, nil
	}
}
