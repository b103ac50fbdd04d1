/*
Package retrofx is the editing core of a retro image effects tool.

An Editor owns one editing session: the uploaded image, the single active
effect with its tuned parameters, and the preview frame. It talks to an
external image service through ports (upload, processing, image fetch) and
never processes pixels itself.

# Concept

The user uploads an image, picks one effect from the catalog, tunes its
parameters and applies it. Each apply is a submission ordered by a token;
when responses overtake each other only the newest one reaches the preview,
so the visible frame never regresses to older parameters.

# Usage

	package main

	import (
		"context"
		"log"
		"os"

		"github.com/aretw0/retrofx"
		"github.com/aretw0/retrofx/pkg/adapters/gateway"
		"github.com/aretw0/retrofx/pkg/domain"
	)

	func main() {
		client, err := gateway.New("http://localhost:5000")
		if err != nil {
			log.Fatal(err)
		}
		ed := retrofx.New(client, client, client)

		ctx := context.Background()
		data, _ := os.ReadFile("cat.png")
		if _, err := ed.Upload(ctx, "cat.png", data); err != nil {
			log.Fatal(err)
		}
		_ = ed.SelectEffect(domain.EffectPixelate)
		_, _ = ed.UpdateParam("pixel_size", 24)

		if _, err := ed.Apply(ctx); err != nil {
			log.Fatal(err)
		}
		name, png, _ := ed.Export()
		_ = os.WriteFile(name, png, 0o644)
	}

# Adapters

pkg/adapters/http serves editors to a browser, pkg/adapters/mcp exposes one to
AI agents, and pkg/session keeps many editors apart with per-session locking
and optional persistence through pkg/adapters/redis.
*/
package retrofx
