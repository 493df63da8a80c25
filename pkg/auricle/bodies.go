package auricle

// PlaybackPlayBody is the payload for playback.play.
type PlaybackPlayBody struct {
	Index *int `json:"index,omitempty"`
}

// PlaybackSkipBody is the payload for playback.next and playback.prev.
type PlaybackSkipBody struct {
	Manual bool `json:"manual"`
}

// PlaybackSeekBody is the payload for playback.seek.
type PlaybackSeekBody struct {
	PositionMS int64 `json:"positionMs"`
}

// PlaybackFFWDRewBody is the payload for playback.ffwdRew.
type PlaybackFFWDRewBody struct {
	DeltaMS int64 `json:"deltaMs"`
}

// PlaybackSetVolumeBody is the payload for playback.setVolume.
type PlaybackSetVolumeBody struct {
	Volume int   `json:"volume"`
	Mute   *bool `json:"mute,omitempty"`
}

// SetRandomBody is the payload for playback.setRandom.
type SetRandomBody struct {
	Value bool `json:"value"`
}

// SetRepeatBody is the payload for playback.setRepeat.
type SetRepeatBody struct {
	Repeat       bool `json:"repeat"`
	RepeatSingle bool `json:"repeatSingle"`
}

// SetConsumeBody is the payload for playback.setConsume.
type SetConsumeBody struct {
	Value bool `json:"value"`
}

// QueueAddBody adds items to the play queue.
type QueueAddBody struct {
	Items []Track `json:"items"`
}

// QueueAddReply is returned by queue.add, queue.addPlay and
// queue.replacePlay.
type QueueAddReply struct {
	FirstItemIndex int `json:"firstItemIndex"`
}

// QueuePlayNextBody inserts an item after the current position.
type QueuePlayNextBody struct {
	Item Track `json:"item"`
}

// QueueRemoveBody removes one entry by index.
type QueueRemoveBody struct {
	Index int `json:"index"`
}

// QueueRemoveAfterBody truncates the queue after an index.
type QueueRemoveAfterBody struct {
	Index int `json:"index"`
}

// QueueMoveBody relocates one entry.
type QueueMoveBody struct {
	From int `json:"from"`
	To   int `json:"to"`
}

// QueueClearBody empties the queue.
type QueueClearBody struct {
	EmitEmptyState bool `json:"emitEmptyState"`
}

// QueuePreloadBody warms the resolver cache for upcoming items.
type QueuePreloadBody struct {
	Items []Track `json:"items"`
}

// QueueGetReply is the reply body for queue.get.
type QueueGetReply struct {
	Items []Track `json:"items"`
}

// StateGetReply is the reply body for state.get.
type StateGetReply struct {
	State State `json:"state"`
}
