package dispatch

import "github.com/stasyk411/gbr/core/model"

// forward lists the call moves accepted when strict transitions are enabled.
// Re-applying the current status is always accepted except on COMPLETED.
var forward = map[model.CallStatus][]model.CallStatus{
	model.CallPending:    {model.CallAssigned, model.CallInProgress, model.CallCompleted},
	model.CallAssigned:   {model.CallInProgress, model.CallCompleted},
	model.CallInProgress: {model.CallCompleted},
	model.CallCompleted:  nil,
}

func checkTransition(from, to model.CallStatus) error {
	if from == model.CallCompleted {
		return model.Conflictf("call already completed")
	}
	if from == to {
		return nil
	}
	for _, s := range forward[from] {
		if s == to {
			return nil
		}
	}
	return model.Conflictf("transition %s -> %s not allowed", from, to)
}
