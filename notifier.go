package gatt

import "github.com/sirupsen/logrus"

// Notify sets the value of c and sends it to the connected central as a
// notification. It is a no-op when no central is connected or c is not
// registered or not notify capable. Delivery failures are logged, not
// returned. Notify may be called from any goroutine.
func (s *Server) Notify(c *Characteristic, value []byte) {
	s.push(c, value, false)
}

// Indicate is like Notify but requests an acknowledgement from the central.
func (s *Server) Indicate(c *Characteristic, value []byte) {
	s.push(c, value, true)
}

func (s *Server) push(c *Characteristic, value []byte, confirm bool) {
	log := s.gatts.WithFields(logrus.Fields{"uuid": c.uuid, "indicate": confirm})
	if c.SetValue(value) {
		log.WithField("max_len", c.maxLen).Warn("value exceeds maximum value length, truncating")
	}
	conn, ok := s.sess.get()
	if !ok {
		return
	}
	n, ok := c.Handle()
	if !ok || !c.props.Pushable() {
		return
	}
	v := c.Value()
	if max := conn.MTU - 3; max >= 0 && len(v) > max {
		v = v[:max]
	}
	if err := s.ctrl.SendIndicate(conn.Interface, conn.ID, n, v, confirm); err != nil {
		log.WithError(err).WithField("conn_id", conn.ID).Debug("push dropped")
	}
}
