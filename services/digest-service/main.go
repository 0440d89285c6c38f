package main

import "github.com/stoik/timeline/services/digest-service/internal/app"

func main() {
	app.Execute()
}
