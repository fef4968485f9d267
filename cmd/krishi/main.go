// Command krishi answers farmer questions by routing them to specialized
// advisory workers and merging their answers.
package main

func main() {
	Execute()
}
