package database

const schema = `
CREATE TABLE IF NOT EXISTS users (
    id CHAR(36) PRIMARY KEY,
    name VARCHAR(255) NOT NULL DEFAULT '',
    email VARCHAR(255) NOT NULL UNIQUE,
    cpf VARCHAR(14) NOT NULL DEFAULT '',
    phone_number VARCHAR(20) NOT NULL DEFAULT '',
    token VARCHAR(255),
    weight DECIMAL(5,2) NOT NULL DEFAULT 0,
    height DECIMAL(5,2) NOT NULL DEFAULT 0,
    age INT NOT NULL DEFAULT 0,
    goal VARCHAR(64) NOT NULL DEFAULT '',
    daily_calories INT NOT NULL DEFAULT 2000,
    gender VARCHAR(4) NOT NULL DEFAULT '',
    meal_schedule VARCHAR(64) NOT NULL DEFAULT '',
    activity_level VARCHAR(32) NOT NULL DEFAULT '',
    training_plan VARCHAR(32) NOT NULL DEFAULT '',
    training_frequency VARCHAR(10) NOT NULL DEFAULT '3-5',
    activity_type VARCHAR(32) NOT NULL DEFAULT 'misto',
    breakfast JSON,
    morning_snack JSON,
    lunch JSON,
    afternoon_snack JSON,
    dinner JSON,
    uses_whey_protein TINYINT(1) NOT NULL DEFAULT 0,
    uses_hypercaloric TINYINT(1) NOT NULL DEFAULT 0,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    KEY idx_users_token (token)
);

CREATE TABLE IF NOT EXISTS diets (
    id CHAR(36) PRIMARY KEY,
    user_id CHAR(36) NOT NULL,
    prompt TEXT NOT NULL,
    ai_response MEDIUMTEXT NOT NULL,
    snapshot JSON,
    description VARCHAR(255) NOT NULL DEFAULT '',
    payment_order_id VARCHAR(255),
    payment_order_status VARCHAR(50) NOT NULL DEFAULT 'pending',
    pix_qr_code TEXT,
    pix_qr_code_url TEXT,
    pix_expires_at VARCHAR(64) NOT NULL DEFAULT '',
    amount_minor_units INT NOT NULL DEFAULT 0,
    workflow_status VARCHAR(20) NOT NULL DEFAULT 'pending',
    is_regenerated TINYINT(1) NOT NULL DEFAULT 0,
    regeneration_feedback TEXT,
    regeneration_count INT NOT NULL DEFAULT 0,
    original_diet_id CHAR(36),
    archive_url TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    KEY idx_diets_user (user_id, created_at),
    KEY idx_diets_order (payment_order_id),
    FOREIGN KEY (user_id) REFERENCES users(id)
);
`
