package statedump

// BeforeFork pauses the agent worker and waits for its acknowledgement
// before the caller forks. The actual fork syscall is outside this
// package's reach (Go cannot safely fork a multi-goroutine process); a
// cgo or exec-based caller invokes this immediately before doing so.
func (s *Subsystem) BeforeFork() {
	s.agent.pause()
}

// AfterForkParent resumes the paused agent worker in the parent.
func (s *Subsystem) AfterForkParent() {
	s.agent.resume()
}

// AfterForkChild resets the agent block in the child: the worker
// goroutine did not survive the fork, so if one was live a fresh worker
// is spawned to keep serving the Agent-mode handles still registered.
func (s *Subsystem) AfterForkChild() {
	s.agent.resetAfterForkChild()
}
