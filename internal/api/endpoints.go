package api

import (
	"context"
	"net/url"
	"strconv"

	"github.com/matheuskafuri/postview/internal/model"
)

// GetPostPage fetches one page of posts. Pages start at 1.
func (c *Client) GetPostPage(ctx context.Context, page, limit int) ([]model.Post, error) {
	q := url.Values{}
	q.Set("_page", strconv.Itoa(page))
	q.Set("_limit", strconv.Itoa(limit))

	var posts []model.Post
	if err := c.get(ctx, "/posts", q, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) GetPostByID(ctx context.Context, id int) (model.Post, error) {
	var post model.Post
	err := c.get(ctx, "/posts/"+strconv.Itoa(id), nil, &post)
	return post, err
}

// GetPostsByUser fetches every post owned by userID.
func (c *Client) GetPostsByUser(ctx context.Context, userID int) ([]model.Post, error) {
	q := url.Values{}
	q.Set("userId", strconv.Itoa(userID))

	var posts []model.Post
	if err := c.get(ctx, "/posts", q, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) GetUsers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := c.get(ctx, "/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) GetUserByID(ctx context.Context, id int) (model.User, error) {
	var user model.User
	err := c.get(ctx, "/users/"+strconv.Itoa(id), nil, &user)
	return user, err
}

func (c *Client) GetCommentsByPost(ctx context.Context, postID int) ([]model.Comment, error) {
	q := url.Values{}
	q.Set("postId", strconv.Itoa(postID))

	var comments []model.Comment
	if err := c.get(ctx, "/comments", q, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}
