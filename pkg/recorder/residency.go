package recorder

// Residency returns the fraction of all hits observed for each full
// signature.
func (r *Recorder) Residency() map[string]float64 {
	r.lock.RLock()
	defer r.lock.RUnlock()

	var sampleCount uint64
	for _, count := range r.hits {
		sampleCount += count
	}

	residencyTable := make(map[string]float64, len(r.hits))
	for sig, count := range r.hits {
		residencyTable[sig] = float64(count) / float64(sampleCount)
	}

	return residencyTable
}
