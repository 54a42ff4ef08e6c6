package tracked

func (s *Store) batchEvent(path Path, context any) BatchEvent {
	return BatchEvent{Path: path, State: s.value, Context: context}
}

// StartBatch opens a batch. Updates are buffered until the outermost batch
// finishes.
func (s *Store) StartBatch(path Path, context any) {
	s.batches++
	ev := s.batchEvent(path, context)
	for _, l := range s.batchStartListeners {
		l.OnBatchStart(ev)
	}
}

// FinishBatch closes a batch and, at depth zero, flushes the union of the
// buffered paths in one update.
func (s *Store) FinishBatch(path Path, context any) {
	ev := s.batchEvent(path, context)
	for _, l := range s.batchFinishListeners {
		l.OnBatchFinish(ev)
	}
	s.batches--
	if s.batches == 0 && len(s.pendingPaths) > 0 {
		paths := s.pendingPaths
		s.pendingPaths = nil
		s.pendingSeen = nil
		s.Update(paths)
	}
}

// PostponeBatch queues action until the pending root settles with a value.
func (s *Store) PostponeBatch(action func()) {
	s.pendingActions = append(s.pendingActions, action)
}

// BatchDepth is the number of open batches.
func (s *Store) BatchDepth() int { return s.batches }
