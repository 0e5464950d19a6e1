// Command coldb inspects, compacts and benchmarks coldb stores.
package main

func main() {
	Execute()
}
