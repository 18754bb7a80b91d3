package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hitoshi/mindjournal/internal/model"
)

// PostgresEntryRepo はPostgreSQLを使用したジャーナルエントリリポジトリ。
type PostgresEntryRepo struct {
	db *sql.DB
}

// NewPostgresEntryRepo はPostgresEntryRepoを生成する。
func NewPostgresEntryRepo(db *sql.DB) *PostgresEntryRepo {
	return &PostgresEntryRepo{db: db}
}

// entrySelect はエントリと感情タグ(JSON配列)を取得する共通SELECT句。
// 呼び出し側でWHERE句を続け、最後に entryGroupBy を付与する。
const entrySelect = `
	SELECT e.id, e.user_id, e.title, e.content, e.mood_score, e.word_count, e.is_draft,
	       e.prompt_used, e.sentiment_score, e.sentiment_data, e.created_at, e.updated_at,
	       COALESCE(
	           json_agg(json_build_object('id', et.id, 'name', et.name, 'color', et.color) ORDER BY et.name)
	               FILTER (WHERE et.id IS NOT NULL),
	           '[]'
	       ) AS emotions
	FROM journal_entries e
	LEFT JOIN entry_emotion_tags eet ON eet.entry_id = e.id
	LEFT JOIN emotion_tags et ON et.id = eet.emotion_tag_id`

const entryGroupBy = ` GROUP BY e.id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(s rowScanner) (*model.JournalEntry, error) {
	entry := &model.JournalEntry{}
	var moodScore sql.NullInt64
	var promptUsed sql.NullString
	var sentimentScore sql.NullFloat64
	var sentimentData, emotions []byte

	err := s.Scan(
		&entry.ID, &entry.UserID, &entry.Title, &entry.Content, &moodScore, &entry.WordCount, &entry.IsDraft,
		&promptUsed, &sentimentScore, &sentimentData, &entry.CreatedAt, &entry.UpdatedAt,
		&emotions,
	)
	if err != nil {
		return nil, err
	}

	if moodScore.Valid {
		v := int(moodScore.Int64)
		entry.MoodScore = &v
	}
	if promptUsed.Valid {
		entry.PromptUsed = &promptUsed.String
	}
	if sentimentScore.Valid {
		entry.SentimentScore = &sentimentScore.Float64
	}
	if len(sentimentData) > 0 {
		entry.SentimentData = json.RawMessage(sentimentData)
	}
	entry.Emotions = []model.EmotionTag{}
	if err := json.Unmarshal(emotions, &entry.Emotions); err != nil {
		return nil, fmt.Errorf("感情タグのデコードに失敗しました: %w", err)
	}

	return entry, nil
}

// Create はエントリと感情タグの紐付けを同一トランザクションで作成する。
func (r *PostgresEntryRepo) Create(ctx context.Context, entry *model.JournalEntry, tags model.TagSelection) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO journal_entries (id, user_id, title, content, mood_score, word_count, is_draft, prompt_used, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.UserID, entry.Title, entry.Content, nullableInt(entry.MoodScore), entry.WordCount,
		entry.IsDraft, nullableString(entry.PromptUsed), entry.CreatedAt, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("エントリの作成に失敗しました: %w", err)
	}

	if err := linkEmotionTags(ctx, tx, entry.ID, tags); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// FindByID はユーザーのエントリを感情タグ付きで取得する。見つからない場合はnilを返す。
func (r *PostgresEntryRepo) FindByID(ctx context.Context, userID, id string) (*model.JournalEntry, error) {
	row := r.db.QueryRowContext(ctx,
		entrySelect+` WHERE e.user_id = $1 AND e.id = $2`+entryGroupBy,
		userID, id,
	)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("エントリの取得に失敗しました: %w", err)
	}
	return entry, nil
}

// List は条件に合うエントリをcreated_at降順で返す。
// 検索語は全文検索(plainto_tsquery)とタイトル・本文の部分一致のいずれかで判定する。
func (r *PostgresEntryRepo) List(ctx context.Context, userID string, opts model.EntryListOptions) ([]*model.JournalEntry, error) {
	var b strings.Builder
	b.WriteString(entrySelect)
	b.WriteString(` WHERE e.user_id = $1`)
	args := []any{userID}

	if !opts.IncludeDrafts {
		b.WriteString(` AND e.is_draft = false`)
	}
	if opts.Search != "" {
		args = append(args, opts.Search, "%"+escapeLike(opts.Search)+"%")
		q, p := len(args)-1, len(args)
		fmt.Fprintf(&b,
			` AND (to_tsvector('english', e.title || ' ' || e.content) @@ plainto_tsquery('english', $%d)
			   OR e.title ILIKE $%d OR e.content ILIKE $%d)`,
			q, p, p,
		)
	}

	b.WriteString(entryGroupBy)
	b.WriteString(` ORDER BY e.created_at DESC`)
	args = append(args, opts.Limit, opts.Offset)
	fmt.Fprintf(&b, ` LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	return r.queryEntries(ctx, b.String(), args...)
}

// ListAll はユーザーの全エントリ（下書き含む）をcreated_at降順で返す。
func (r *PostgresEntryRepo) ListAll(ctx context.Context, userID string) ([]*model.JournalEntry, error) {
	return r.queryEntries(ctx,
		entrySelect+` WHERE e.user_id = $1`+entryGroupBy+` ORDER BY e.created_at DESC`,
		userID,
	)
}

func (r *PostgresEntryRepo) queryEntries(ctx context.Context, query string, args ...any) ([]*model.JournalEntry, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("エントリ一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	entries := []*model.JournalEntry{}
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("エントリのスキャンに失敗しました: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("エントリ一覧の走査に失敗しました: %w", err)
	}
	return entries, nil
}

// Update はエントリを全置換し、感情タグの紐付けを削除してから再作成する。
func (r *PostgresEntryRepo) Update(ctx context.Context, entry *model.JournalEntry, tags model.TagSelection) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE journal_entries
		 SET title = $3, content = $4, mood_score = $5, word_count = $6, is_draft = $7, updated_at = $8
		 WHERE id = $1 AND user_id = $2`,
		entry.ID, entry.UserID, entry.Title, entry.Content, nullableInt(entry.MoodScore),
		entry.WordCount, entry.IsDraft, entry.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("エントリの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM entry_emotion_tags WHERE entry_id = $1`, entry.ID); err != nil {
		return fmt.Errorf("感情タグの紐付け解除に失敗しました: %w", err)
	}
	if err := linkEmotionTags(ctx, tx, entry.ID, tags); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpdateSentiment は感情分析の結果をエントリに保存する。
func (r *PostgresEntryRepo) UpdateSentiment(ctx context.Context, userID, id string, score float64, data []byte) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE journal_entries SET sentiment_score = $3, sentiment_data = $4
		 WHERE id = $1 AND user_id = $2`,
		id, userID, score, string(data),
	)
	if err != nil {
		return fmt.Errorf("感情分析結果の保存に失敗しました: %w", err)
	}
	return requireAffected(result)
}

// Delete はエントリを削除する。
func (r *PostgresEntryRepo) Delete(ctx context.Context, userID, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM journal_entries WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return fmt.Errorf("エントリの削除に失敗しました: %w", err)
	}
	return requireAffected(result)
}

// linkEmotionTags はタグIDの存在確認と名前指定タグの取得または作成を行い、エントリに紐付ける。
// 紐付けは ON CONFLICT DO NOTHING で冪等に行う。
func linkEmotionTags(ctx context.Context, tx *sql.Tx, entryID string, tags model.TagSelection) error {
	tagIDs := make([]string, 0, len(tags.IDs)+len(tags.Names))

	for _, id := range tags.IDs {
		var exists bool
		err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM emotion_tags WHERE id = $1)`, id,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("感情タグの確認に失敗しました: %w", err)
		}
		if !exists {
			return &UnknownEmotionTagError{ID: id}
		}
		tagIDs = append(tagIDs, id)
	}

	for _, name := range tags.Names {
		var id string
		err := tx.QueryRowContext(ctx,
			`INSERT INTO emotion_tags (name, color) VALUES ($1, $2)
			 ON CONFLICT (name) DO UPDATE SET name = EXCLUDED.name
			 RETURNING id`,
			name, model.DefaultEmotionTagColor,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("感情タグ %q の作成に失敗しました: %w", name, err)
		}
		tagIDs = append(tagIDs, id)
	}

	for _, id := range tagIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO entry_emotion_tags (entry_id, emotion_tag_id) VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			entryID, id,
		)
		if err != nil {
			return fmt.Errorf("感情タグの紐付けに失敗しました: %w", err)
		}
	}
	return nil
}

func requireAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の取得に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike はILIKEパターン中のワイルドカード文字をエスケープする。
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func nullableInt(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

// compile-time interface check
var _ EntryRepository = (*PostgresEntryRepo)(nil)
