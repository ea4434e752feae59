package server

// NodeReadiness is false once an integrity check has failed.
func (s *Server) NodeReadiness() (bool, string) {
	st := s.net.Status()
	if st.Halted {
		return false, st.HaltReason
	}
	return true, ""
}
