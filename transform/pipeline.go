package transform

// Pipeline is an immutable ordered sequence of links. The zero
// value and nil are both the identity pipeline.
type Pipeline struct {
	links []Link
}

// New builds a pipeline from links in write order. Nil links are skipped.
func New(links ...Link) *Pipeline {
	pipeline := &Pipeline{links: make([]Link, 0, len(links))}

	for _, link := range links {
		if link == nil {
			continue
		}

		pipeline.links = append(pipeline.links, link)
	}

	return pipeline
}

// Apply runs every link forward, head to tail
func (pipeline *Pipeline) Apply(text string) (string, error) {
	if pipeline == nil {
		return text, nil
	}

	for i, link := range pipeline.links {
		var err error

		if text, err = link.Forward(text); err != nil {
			return "", &Error{Direction: Forward, Index: i, Err: err}
		}
	}

	return text, nil
}

// Reverse runs every link backward, tail to head
func (pipeline *Pipeline) Reverse(text string) (string, error) {
	if pipeline == nil {
		return text, nil
	}

	for i := len(pipeline.links) - 1; i >= 0; i-- {
		var err error

		if text, err = pipeline.links[i].Backward(text); err != nil {
			return "", &Error{Direction: Backward, Index: i, Err: err}
		}
	}

	return text, nil
}

// HasTransforms reports whether the pipeline does anything
func (pipeline *Pipeline) HasTransforms() bool {
	return pipeline.Len() > 0
}

// Len returns the number of links
func (pipeline *Pipeline) Len() int {
	if pipeline == nil {
		return 0
	}

	return len(pipeline.links)
}
