package server

// NodeLiveness reports whether the node can answer for its ledger.
func (s *Server) NodeLiveness() bool {
	return s.net.Ledger().Tip().Hash != ""
}
