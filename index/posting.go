package index

// Posting records that a package contains a token, and how often.
type Posting struct {
	Package   string // Package name, the document identity
	Frequency int    // Term frequency of the token within the package's text
}

// PostingList holds every posting for one token, in document insertion order.
type PostingList []Posting

// Contains reports whether the list has a posting for the given package.
func (pl PostingList) Contains(pkg string) bool {
	for _, p := range pl {
		if p.Package == pkg {
			return true
		}
	}
	return false
}
