package testutil

import "testing"

// SeedSite fills every CMS table with a small, consistent site:
// two users, two categories, three posts with tags and comments,
// one media file and two site settings.
func SeedSite(t *testing.T, db *TestDatabase) {
	t.Helper()
	db.Exec(t,
		`INSERT INTO users (id, username, email, display_name, is_staff, date_joined) VALUES
			(1, 'editor', 'editor@example.com', 'Editor', 1, '2023-03-01 09:00:00'),
			(2, 'writer', 'writer@example.com', 'Writer', 0, '2023-04-12 14:30:00')`,
		`INSERT INTO categories (id, name, slug, description) VALUES
			(1, 'News', 'news', 'Site news'),
			(2, 'Guides', 'guides', '')`,
		`INSERT INTO tags (id, name, slug) VALUES (1, 'go', 'go'), (2, 'release', 'release')`,
		`INSERT INTO posts (id, title, slug, content, excerpt, status, author_id, category_id, view_count, created_at, updated_at, published_at) VALUES
			(1, 'Welcome', 'welcome', 'Hello world', 'Hello', 'published', 1, 1, 42, '2024-01-01 08:00:00', '2024-01-01 08:00:00', '2024-01-01 08:00:00'),
			(2, 'Getting started', 'getting-started', 'Step one', '', 'published', 2, 2, 7, '2024-01-05 10:00:00', '2024-01-06 11:00:00', '2024-01-06 11:00:00'),
			(3, 'Roadmap', 'roadmap', 'Soon', '', 'draft', 1, NULL, 0, '2024-01-10 12:00:00', '2024-01-10 12:00:00', NULL)`,
		`INSERT INTO post_tags (id, post_id, tag_id) VALUES (1, 1, 2), (2, 2, 1)`,
		`INSERT INTO comments (id, post_id, author_name, author_email, content, is_approved, created_at) VALUES
			(1, 1, 'Reader', 'reader@example.com', 'Nice!', 1, '2024-01-02 09:15:00')`,
		`INSERT INTO media_files (id, file_name, file_path, mime_type, size_bytes, alt_text, uploaded_by_id, uploaded_at) VALUES
			(1, 'logo.png', 'uploads/logo.png', 'image/png', 2048, 'Logo', 1, '2023-03-02 10:00:00')`,
		`INSERT INTO site_settings (id, key, value, updated_at) VALUES
			(1, 'site_name', 'Example CMS', '2024-01-01 00:00:00'),
			(2, 'posts_per_page', '10', '2024-01-01 00:00:00')`,
	)
}
