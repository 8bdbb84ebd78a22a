package service

import (
	"context"
	"errors"
	"io"
	"iter"
	"log/slog"

	"github.com/mtorresweb/spotlight-server/internal/domain"
	"github.com/mtorresweb/spotlight-server/internal/dto"
	domainerrors "github.com/mtorresweb/spotlight-server/internal/errors"
	"github.com/mtorresweb/spotlight-server/internal/feed"
	"github.com/mtorresweb/spotlight-server/internal/id"
	"github.com/mtorresweb/spotlight-server/internal/media"
	"github.com/mtorresweb/spotlight-server/internal/normalize"
	"github.com/mtorresweb/spotlight-server/internal/sse"
	"github.com/mtorresweb/spotlight-server/internal/store"
)

// CreatePostRequest holds the fields of a new post.
type CreatePostRequest struct {
	StorageID string `json:"storage_id" validate:"required"`
	Caption   string `json:"caption" validate:"maxrunes=2200"`
	BlurHash  string `json:"blur_hash" validate:"max=100"`
}

// UploadResult describes a stored image ready to be posted.
type UploadResult struct {
	StorageID   string `json:"storage_id"`
	URL         string `json:"url"`
	BlurHash    string `json:"blur_hash,omitempty"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// LikeResult is the state after a like toggle.
type LikeResult struct {
	Liked bool  `json:"liked"`
	Likes int64 `json:"likes"`
}

// BookmarkResult is the state after a bookmark toggle.
type BookmarkResult struct {
	Bookmarked bool `json:"bookmarked"`
}

// PostService implements the post and feed operations.
type PostService struct {
	store     store.Store
	identity  *IdentityResolver
	likes     *RelationStore
	bookmarks *RelationStore
	counters  *CounterMaintainer
	assembler *feed.Assembler
	objects   media.ObjectStorage
	indexer   SearchIndexer
	emitter   EventEmitter
	logger    *slog.Logger
}

// PostServiceDeps groups the collaborators of PostService.
type PostServiceDeps struct {
	Store     store.Store
	Identity  *IdentityResolver
	Likes     *RelationStore
	Bookmarks *RelationStore
	Counters  *CounterMaintainer
	Assembler *feed.Assembler
	Objects   media.ObjectStorage
	Indexer   SearchIndexer
	Emitter   EventEmitter
	Logger    *slog.Logger
}

// NewPostService creates a PostService. Indexer and Emitter may be nil.
func NewPostService(deps PostServiceDeps) *PostService {
	if deps.Indexer == nil {
		deps.Indexer = NoopIndexer{}
	}
	if deps.Emitter == nil {
		deps.Emitter = NoopEmitter{}
	}
	return &PostService{
		store:     deps.Store,
		identity:  deps.Identity,
		likes:     deps.Likes,
		bookmarks: deps.Bookmarks,
		counters:  deps.Counters,
		assembler: deps.Assembler,
		objects:   deps.Objects,
		indexer:   deps.Indexer,
		emitter:   deps.Emitter,
		logger:    deps.Logger,
	}
}

// Upload stores image bytes for the caller and returns the reference to pass
// to CreatePost.
func (s *PostService) Upload(ctx context.Context, principal domain.Principal, data []byte) (*UploadResult, error) {
	viewer, err := s.identity.Viewer(ctx, principal)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{
			"body": "is required",
		})
	}

	obj, err := s.objects.Put(ctx, viewer.UserID, data)
	if err != nil {
		if errors.Is(err, media.ErrUnsupportedType) {
			return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{
				"body": "must be a jpeg, png, gif or webp image",
			})
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to store image")
	}

	url, err := s.objects.URL(ctx, obj.Key)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to resolve image url")
	}

	hash, err := media.ComputeBlurHash(data)
	if err != nil {
		s.logger.Warn("blurhash failed", "storage_id", obj.Key, "error", err)
	}

	s.logger.Info("image uploaded",
		"storage_id", obj.Key,
		"user_id", viewer.UserID,
		"size", obj.Size,
	)
	return &UploadResult{
		StorageID:   obj.Key,
		URL:         url,
		BlurHash:    hash,
		ContentType: obj.ContentType,
		Size:        obj.Size,
	}, nil
}

// CreatePost publishes an uploaded image.
func (s *PostService) CreatePost(ctx context.Context, principal domain.Principal, req CreatePostRequest) (*dto.Post, error) {
	viewer, err := s.identity.Viewer(ctx, principal)
	if err != nil {
		return nil, err
	}
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	exists, err := s.objects.Exists(ctx, req.StorageID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to check image")
	}
	if !exists {
		return nil, domainerrors.NotFoundf("image %s not found", req.StorageID)
	}
	url, err := s.objects.URL(ctx, req.StorageID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to resolve image url")
	}

	blurHash := req.BlurHash
	if blurHash == "" {
		blurHash = s.blurHashOf(ctx, req.StorageID)
	}

	postID, err := id.Generate(id.PrefixPost)
	if err != nil {
		return nil, err
	}
	post := &domain.Post{
		ID:        postID,
		UserID:    viewer.UserID,
		StorageID: req.StorageID,
		ImageURL:  url,
		BlurHash:  blurHash,
		Caption:   normalize.Text(req.Caption),
		CreatedAt: domain.Now(),
	}

	var author *domain.User
	err = s.store.Update(ctx, func(tx store.Tx) error {
		if err := tx.CreatePost(ctx, post); err != nil {
			return err
		}
		if _, err := s.counters.AdjustUser(ctx, tx, viewer.UserID, domain.UserPosts, 1); err != nil {
			return err
		}
		var err error
		author, err = tx.GetUser(ctx, viewer.UserID)
		return err
	})
	if err != nil {
		return nil, translate(err, "post")
	}

	if err := s.indexer.IndexPost(post); err != nil {
		s.logger.Warn("failed to index post", "post_id", post.ID, "error", err)
	}
	s.emitter.Emit(sse.NewPostCreatedEvent(post))
	s.logger.Info("post created", "post_id", post.ID, "user_id", viewer.UserID)

	return dto.NewPost(post, author, false, false), nil
}

// blurHashOf computes the placeholder for a stored image. Failures leave the
// post without one.
func (s *PostService) blurHashOf(ctx context.Context, key string) string {
	r, err := s.objects.Open(ctx, key)
	if err != nil {
		s.logger.Warn("blurhash: open image", "storage_id", key, "error", err)
		return ""
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		s.logger.Warn("blurhash: read image", "storage_id", key, "error", err)
		return ""
	}
	hash, err := media.ComputeBlurHash(data)
	if err != nil {
		s.logger.Warn("blurhash failed", "storage_id", key, "error", err)
		return ""
	}
	return hash
}

// GetPost returns one enriched post.
func (s *PostService) GetPost(ctx context.Context, principal domain.Principal, postID string) (*dto.Post, error) {
	viewer, err := s.identity.Viewer(ctx, principal)
	if err != nil {
		return nil, err
	}
	posts, err := s.assembler.AssembleRefs(ctx, viewer, single(postID), feed.WithView("post"))
	if err != nil {
		return nil, translate(err, "post "+postID)
	}
	if len(posts) == 0 {
		return nil, domainerrors.NotFoundf("post %s not found", postID)
	}
	return posts[0], nil
}

// DeletePost removes the caller's post together with its likes, bookmarks
// and comments.
func (s *PostService) DeletePost(ctx context.Context, principal domain.Principal, postID string) error {
	viewer, err := s.identity.Viewer(ctx, principal)
	if err != nil {
		return err
	}

	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return translate(err, "post "+postID)
	}
	if !post.OwnedBy(viewer.UserID) {
		return domainerrors.Forbidden("only the owner can delete a post")
	}

	var removed struct{ likes, bookmarks, comments int64 }
	err = s.store.Update(ctx, func(tx store.Tx) error {
		current, err := tx.GetPost(ctx, postID)
		if err != nil {
			return translate(err, "post "+postID)
		}
		if !current.OwnedBy(viewer.UserID) {
			return domainerrors.Forbidden("only the owner can delete a post")
		}

		if removed.likes, err = tx.DeleteRelationsForTarget(ctx, domain.RelationLike, postID); err != nil {
			return err
		}
		if removed.bookmarks, err = tx.DeleteRelationsForTarget(ctx, domain.RelationBookmark, postID); err != nil {
			return err
		}
		if removed.comments, err = tx.DeleteCommentsForPost(ctx, postID); err != nil {
			return err
		}
		if err := tx.DeletePost(ctx, postID); err != nil {
			return err
		}
		_, err = s.counters.AdjustUser(ctx, tx, current.UserID, domain.UserPosts, -1)
		return err
	})
	if err != nil {
		return translate(err, "post "+postID)
	}

	if err := s.indexer.DeletePost(postID); err != nil {
		s.logger.Warn("failed to remove post from index", "post_id", postID, "error", err)
	}
	s.emitter.Emit(sse.NewPostDeletedEvent(postID, viewer.UserID))
	s.releaseObject(ctx, post)

	s.logger.Info("post deleted",
		"post_id", postID,
		"user_id", viewer.UserID,
		slog.Group("cascade",
			"likes", removed.likes,
			"bookmarks", removed.bookmarks,
			"comments", removed.comments,
		),
	)
	return nil
}

// releaseObject deletes the post's image unless another post of the same
// owner still references it. Keys are scoped per owner, so no other user can
// share it.
func (s *PostService) releaseObject(ctx context.Context, post *domain.Post) {
	for other, err := range s.store.ListPostsByUser(ctx, post.UserID) {
		if err != nil {
			s.logger.Warn("keeping image after failed reference scan", "storage_id", post.StorageID, "error", err)
			return
		}
		if other.StorageID == post.StorageID {
			return
		}
	}
	if err := s.objects.Delete(ctx, post.StorageID); err != nil {
		s.logger.Warn("failed to delete image", "storage_id", post.StorageID, "error", err)
	}
}

// ToggleLike flips the caller's like on postID.
func (s *PostService) ToggleLike(ctx context.Context, principal domain.Principal, postID string) (*LikeResult, error) {
	viewer, err := s.identity.Viewer(ctx, principal)
	if err != nil {
		return nil, err
	}

	var result LikeResult
	err = s.store.Update(ctx, func(tx store.Tx) error {
		liked, err := s.likes.ToggleTx(ctx, tx, viewer, postID)
		if err != nil {
			return err
		}
		post, err := tx.GetPost(ctx, postID)
		if err != nil {
			return err
		}
		result = LikeResult{Liked: liked, Likes: post.Likes}
		return nil
	})
	if err != nil {
		return nil, translate(err, "post "+postID)
	}

	s.likes.Record(viewer, postID, result.Liked)
	s.emitter.Emit(sse.NewPostLikedEvent(postID, viewer.UserID, result.Liked, result.Likes))
	return &result, nil
}

// ToggleBookmark flips the caller's bookmark on postID.
func (s *PostService) ToggleBookmark(ctx context.Context, principal domain.Principal, postID string) (*BookmarkResult, error) {
	viewer, err := s.identity.Viewer(ctx, principal)
	if err != nil {
		return nil, err
	}

	bookmarked, err := s.bookmarks.Toggle(ctx, viewer, postID)
	if err != nil {
		return nil, err
	}

	s.emitter.Emit(sse.NewPostBookmarkedEvent(postID, viewer.UserID, bookmarked))
	return &BookmarkResult{Bookmarked: bookmarked}, nil
}

// GetFeedPosts returns every post, newest first.
func (s *PostService) GetFeedPosts(ctx context.Context, principal domain.Principal) ([]*dto.Post, error) {
	viewer, err := s.identity.Viewer(ctx, principal)
	if err != nil {
		return nil, err
	}
	posts, err := s.assembler.Assemble(ctx, viewer, s.store.ListPosts(ctx), feed.WithView("feed"))
	if err != nil {
		return nil, translate(err, "feed")
	}
	return posts, nil
}

// GetBookmarkedPosts returns the caller's bookmarked posts, most recently
// bookmarked first.
func (s *PostService) GetBookmarkedPosts(ctx context.Context, principal domain.Principal) ([]*dto.Post, error) {
	viewer, err := s.identity.Viewer(ctx, principal)
	if err != nil {
		return nil, err
	}
	posts, err := s.assembler.AssembleRefs(ctx, viewer, s.bookmarks.ListTargets(ctx, viewer),
		feed.WithBookmarked(), feed.WithView("bookmarks"))
	if err != nil {
		return nil, translate(err, "bookmarks")
	}
	return posts, nil
}

// GetPostsByUser returns userID's posts, newest first. An empty userID means
// the caller. An unknown user has no posts.
func (s *PostService) GetPostsByUser(ctx context.Context, principal domain.Principal, userID string) ([]*dto.Post, error) {
	viewer, err := s.identity.Viewer(ctx, principal)
	if err != nil {
		return nil, err
	}
	if userID == "" {
		userID = viewer.UserID
	}
	posts, err := s.assembler.Assemble(ctx, viewer, s.store.ListPostsByUser(ctx, userID), feed.WithView("profile"))
	if err != nil {
		return nil, translate(err, "posts")
	}
	return posts, nil
}

func single(v string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		yield(v, nil)
	}
}
