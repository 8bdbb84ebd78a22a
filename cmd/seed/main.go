// Package main seeds a spotlight store with demo accounts and activity.
//
// It provisions a handful of users, publishes generated images for each, and
// adds follows, likes, bookmarks and comments so the feed has something to
// show. A PASETO token is printed for every user. Run it while the server is
// stopped.
//
// Usage:
//
//	go run ./cmd/seed
//	go run ./cmd/seed -posts 5 -seed 42 -- -store sqlite
//
// Arguments after the tool's own flags are passed to the server
// configuration loader.
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"os"

	"github.com/samber/do/v2"

	"github.com/mtorresweb/spotlight-server/internal/auth"
	"github.com/mtorresweb/spotlight-server/internal/config"
	"github.com/mtorresweb/spotlight-server/internal/di"
	"github.com/mtorresweb/spotlight-server/internal/domain"
	"github.com/mtorresweb/spotlight-server/internal/dto"
	"github.com/mtorresweb/spotlight-server/internal/service"
)

type account struct {
	name     string
	fullName string
	bio      string
}

var accounts = []account{
	{"ana", "Ana Torres", "Film photography and long walks."},
	{"bruno", "Bruno Díaz", "Street corners at golden hour."},
	{"carla", "Carla Méndez", "Mostly plants."},
	{"diego", "Diego Ruiz", "Bikes, bridges and the occasional cat."},
	{"elena", "Elena Vidal", ""},
}

var captions = []string{
	"First light over the harbor",
	"Found this wall on the way home",
	"Weekend market colors",
	"Rain again",
	"Not a filter, the sky really looked like this",
	"",
	"Testing the new lens",
	"Quiet morning",
}

var remarks = []string{
	"Love the colors!",
	"Where is this?",
	"Great shot",
	"This made my day",
	"The framing is perfect",
}

func main() {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	postsPerUser := fs.Int("posts", 3, "Posts to publish per user")
	randSeed := fs.Uint64("seed", 1, "Random seed for follows, likes and comments")
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	injector := di.NewContainerWithConfig(cfg)
	err = seed(context.Background(), injector, *postsPerUser, rand.New(rand.NewPCG(*randSeed, *randSeed)))
	_ = injector.Shutdown()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Seed failed: %v\n", err)
		os.Exit(1)
	}
}

type seeded struct {
	principal domain.Principal
	me        *dto.Me
	token     string
}

func seed(ctx context.Context, injector do.Injector, postsPerUser int, rng *rand.Rand) error {
	users, err := do.Invoke[*service.UserService](injector)
	if err != nil {
		return err
	}
	posts, err := do.Invoke[*service.PostService](injector)
	if err != nil {
		return err
	}
	comments, err := do.Invoke[*service.CommentService](injector)
	if err != nil {
		return err
	}
	tokens, err := do.Invoke[*auth.TokenService](injector)
	if err != nil {
		return err
	}

	people := make([]seeded, 0, len(accounts))
	for _, a := range accounts {
		p := domain.Principal{
			ID:       "seed|" + a.name,
			Email:    a.name + "@example.com",
			Username: a.name,
			FullName: a.fullName,
		}
		me, created, err := users.SyncUser(ctx, p)
		if err != nil {
			return fmt.Errorf("sync %s: %w", a.name, err)
		}
		if created && a.bio != "" {
			bio := a.bio
			if me, err = users.UpdateProfile(ctx, p, service.UpdateProfileRequest{Bio: &bio}); err != nil {
				return fmt.Errorf("profile %s: %w", a.name, err)
			}
		}
		token, err := tokens.Issue(p)
		if err != nil {
			return fmt.Errorf("issue token for %s: %w", a.name, err)
		}
		people = append(people, seeded{principal: p, me: me, token: token})
	}

	var published []*dto.Post
	for i, person := range people {
		for n := range postsPerUser {
			up, err := posts.Upload(ctx, person.principal, gradient(rng, i*postsPerUser+n))
			if err != nil {
				return fmt.Errorf("upload for %s: %w", person.me.Username, err)
			}
			post, err := posts.CreatePost(ctx, person.principal, service.CreatePostRequest{
				StorageID: up.StorageID,
				Caption:   captions[rng.IntN(len(captions))],
				BlurHash:  up.BlurHash,
			})
			if err != nil {
				return fmt.Errorf("post for %s: %w", person.me.Username, err)
			}
			published = append(published, post)
		}
	}

	var follows, likes, bookmarks, replies int
	for _, person := range people {
		for _, other := range people {
			if other.me.ID == person.me.ID || rng.IntN(3) == 0 {
				continue
			}
			following, err := users.IsFollowing(ctx, person.principal, other.me.ID)
			if err != nil {
				return err
			}
			if following {
				continue
			}
			if _, err := users.ToggleFollow(ctx, person.principal, other.me.ID); err != nil {
				return fmt.Errorf("follow: %w", err)
			}
			follows++
		}

		for _, post := range published {
			if post.UserID == person.me.ID {
				continue
			}
			if rng.IntN(2) == 0 {
				if res, err := posts.ToggleLike(ctx, person.principal, post.ID); err != nil {
					return fmt.Errorf("like: %w", err)
				} else if res.Liked {
					likes++
				}
			}
			if rng.IntN(5) == 0 {
				if res, err := posts.ToggleBookmark(ctx, person.principal, post.ID); err != nil {
					return fmt.Errorf("bookmark: %w", err)
				} else if res.Bookmarked {
					bookmarks++
				}
			}
			if rng.IntN(4) == 0 {
				if _, err := comments.AddComment(ctx, person.principal, post.ID, remarks[rng.IntN(len(remarks))]); err != nil {
					return fmt.Errorf("comment: %w", err)
				}
				replies++
			}
		}
	}

	fmt.Println("=== Seed Complete ===")
	fmt.Printf("Users: %d  Posts: %d  Follows: %d  Likes: %d  Bookmarks: %d  Comments: %d\n",
		len(people), len(published), follows, likes, bookmarks, replies)
	fmt.Println()
	fmt.Println("Tokens (Authorization: Bearer <token>):")
	for _, person := range people {
		fmt.Printf("  %-8s %s\n", person.me.Username, person.token)
	}
	return nil
}

// gradient renders a small distinct PNG for post n.
func gradient(rng *rand.Rand, n int) []byte {
	const size = 64
	base := color.RGBA{R: uint8(rng.IntN(256)), G: uint8(rng.IntN(256)), B: uint8(n * 37), A: 255}
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for x := range size {
		for y := range size {
			img.Set(x, y, color.RGBA{
				R: base.R + uint8(x*2),
				G: base.G + uint8(y*2),
				B: base.B + uint8((x+y)/2),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
