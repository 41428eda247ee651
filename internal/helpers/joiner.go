package helpers

// Joiner collects the pieces of the compiled output and copies them into a
// single allocation at the end
type Joiner struct {
	pieces [][]byte
	length int
}

func (j *Joiner) AddString(data string) {
	j.AddBytes([]byte(data))
}

func (j *Joiner) AddBytes(data []byte) {
	if len(data) > 0 {
		j.pieces = append(j.pieces, data)
		j.length += len(data)
	}
}

func (j *Joiner) Done() []byte {
	if len(j.pieces) == 1 {
		return j.pieces[0]
	}
	buffer := make([]byte, 0, j.length)
	for _, piece := range j.pieces {
		buffer = append(buffer, piece...)
	}
	return buffer
}
