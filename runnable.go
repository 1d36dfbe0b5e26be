package mecs

// Runnable is the interface implemented by loops.
// Run is called once per machine that satisfies the loop's requirements.
type Runnable interface {
	Run()
}
