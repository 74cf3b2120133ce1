// Command querywire validates and builds EC2-style query parameters from
// YAML action definitions, either one request at a time or as an HTTP
// service.
package main

func main() {
	Execute()
}
