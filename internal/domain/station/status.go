package station

// DeriveStatus computes a station's status from its inputs alone. Precedence:
// closed (inactive) > maintenance (broken required equipment) > full
// (queue at or over capacity) > busy (non-empty queue) > available.
// It is pure and idempotent; every mutation path recomputes status through
// it, nothing sets status directly.
func DeriveStatus(isActive bool, equipment []Equipment, queueLen, maxCapacity int) Status {
	if !isActive {
		return StatusClosed
	}
	for _, eq := range equipment {
		if eq.Required && eq.Status == EquipmentBroken {
			return StatusMaintenance
		}
	}
	if queueLen >= maxCapacity {
		return StatusFull
	}
	if queueLen > 0 {
		return StatusBusy
	}
	return StatusAvailable
}

// recomputeStatus refreshes st.Status from its current fields. Callers must
// hold the station's lock.
func recomputeStatus(st *Station) {
	st.Status = DeriveStatus(st.IsActive, st.Equipment, len(st.Queue), st.MaxCapacity)
}
