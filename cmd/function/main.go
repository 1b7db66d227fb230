// Command function serves the receipt workflow as a CloudEvent function.
// Each delivery runs the workflow to completion before acknowledging.
package main

import (
	"log"
	"os"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
)

const defaultPort = "8080"

func init() {
	functions.CloudEvent("ProcessReceipt", processReceipt)
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}

	if err := funcframework.Start(port); err != nil {
		log.Fatalf("funcframework.Start: %v", err)
	}
}
